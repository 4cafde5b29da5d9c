// Package dataset reads scraper dataset exports item by item
//
// Exports come as one JSON array or as newline delimited JSON, optionally gzipped.
// Numbers are decoded as json.Number so 64 bit ids survive. Malformed NDJSON lines
// are skipped and counted; a malformed array aborts the read.
package dataset
