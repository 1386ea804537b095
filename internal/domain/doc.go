// Package domain models NOAA National Data Buoy Center (NDBC) standard
// meteorological observations.
//
// # Data Source
//
// Historical stdmet files are published per station and per year under
// https://www.ndbc.noaa.gov/data/historical/stdmet/ as gzip-compressed text,
// e.g. "46026h2020.txt.gz". The archive's view_text_file.php endpoint serves the
// same files and sometimes returns them already decompressed (or an HTML error
// page), which is why the fetcher sniffs for the gzip magic bytes instead of
// trusting the file extension.
//
// # Line Format
//
// Header lines start with "#" and are skipped:
//
//	#YY  MM DD hh mm WDIR WSPD GST  WVHT   DPD   APD MWD   PRES  ATMP  WTMP  DEWP  VIS  TIDE
//	#yr  mo dy hr mn degT m/s  m/s     m   sec   sec degT   hPa  degC  degC  degC   mi    ft
//	2020 01 01 00 00 290  7.1  8.6  1.42  9.09  5.63 283 1020.4  11.2  12.4   4.4 99.0 99.00
//
// Columns are whitespace separated. Only the first eight are read:
//
//	0 year, 1 month, 2 day, 3 hour, 4 minute,
//	5 WDIR (degrees true), 6 WSPD (m/s), 7 GST (m/s)
//
// # Missing Values
//
// NDBC encodes missing readings as 99.0 (speeds) and 999 (direction). Instead of
// matching sentinels, every field is range checked: speeds must lie in [0, 90]
// m/s and direction in [0, 360] degrees. Anything outside is treated as absent,
// which covers the sentinels and genuinely corrupt values alike.
//
// # Seasons
//
// Meteorological seasons group whole calendar months:
//
//	Winter: Dec, Jan, Feb   Spring: Mar, Apr, May
//	Summer: Jun, Jul, Aug   Fall:   Sep, Oct, Nov
//
// December is counted in the winter of the same archive year, not the
// following one.
package domain
