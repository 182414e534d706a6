// Command talkvault turns recorded talks into a knowledge-base archive.
//
//	talkvault process <video>...              run the full pipeline
//	talkvault rerun <archive> <stage>         regenerate one stage from cache
//	talkvault cache list <archive>            show cached stage versions
//	talkvault cache use <archive> <stage> <v> select a cached version
//	talkvault jobs list                       show recent jobs
//	talkvault config init|show                manage configuration
//	talkvault doctor                          check external tools
//
// Logs go to the rotated file under paths.log_dir; --verbose mirrors them to
// stderr.
package main
