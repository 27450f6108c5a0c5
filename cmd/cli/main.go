// Package main provides the bbkcrawl command line tool.
//
// bbkcrawl crawls the Deutsche Bundesbank press listings (speeches, interviews and press
// releases) in English and German for a date range and writes one JSON report per run.
//
// Usage:
//
//	bbkcrawl crawl --from 2023-11-01 --to 2023-11-30
//	bbkcrawl retry data/2023-11-01_2023-11-30_2023-12-01.json
//
// See --help for all available options.
package main

func main() {
	Execute()
}
