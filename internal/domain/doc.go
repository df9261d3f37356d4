// Package domain models the NOAA Storm Events bulk CSV archives and the files
// the ETL stages derive from them.
//
// # Data Source
//
// NCEI publishes one gzip-compressed "details" CSV per year at
// https://www.ncei.noaa.gov/pub/data/swdi/stormevents/csvfiles/. Archive names
// embed both the data year and the creation date of the file:
//
//	StormEvents_details-ftp_v1.0_d2011_c20250520.csv.gz
//	                                ^^^^^ ^^^^^^^^^
//	                                year  creation date
//
// The creation date changes whenever NCEI republishes a year, so names cannot
// be derived from the year alone. A static year → archive table is shipped with
// the binary (fileslist.csv) and can be replaced with the FILES_LIST variable.
//
// # Working Directories
//
// Landing directory: downloaded archives only.
//
// Extraction directory: decompressed CSVs (archive name minus ".gz") and the
// JSON batch files produced from them. Because both live side by side, every
// stage filters the directory by extension:
//
//	StormEvents_details-ftp_v1.0_d2011_c20250520.csv        (CSV, transform input)
//	StormEvents_details-ftp_v1.0_d2011_c20250520.csv0.json  (batch 0, load input)
//	StormEvents_details-ftp_v1.0_d2011_c20250520.csv1.json  (batch 1, load input)
//
// # Null Values
//
// The CSVs leave unknown values empty. Empty fields and the usual spreadsheet
// NA spellings ("NA", "N/A", "NaN", "NULL", ...) are treated as null and left
// out of the JSON row object entirely; see [IsNull].
//
// # Numbers
//
// Field text that is already a valid JSON number (e.g. "31.02", "-98.44", "3")
// is written as a JSON number without reformatting. Everything else, including
// zero-padded values such as "0930", is written as a string.
package domain
