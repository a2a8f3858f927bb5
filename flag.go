package main

import (
	"flag"
	"fmt"
	"os"
)

var (
	hf         bool
	configPath string
	logLevel   string
	action     string
	uriFlag    string
)

func InitFlag() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.StringVar(&configPath, "c", "./conf/conf.toml", "set config `file`")
	flag.StringVar(&logLevel, "l", "info", "set log level (default: info)")
	flag.StringVar(&action, "a", ActionInfo, "set `action`: info, list or export")
	flag.StringVar(&uriFlag, "u", "", "override source `uri`, e.g. mbtiles:///data/world.mbtiles?mode=ro")
	flag.Usage = usage
	flag.Parse()

	if hf {
		flag.Usage()
		os.Exit(0)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `mbtiler version: mbtiler/v0.1.0
Usage: mbtiler [-h] [-c filename] [-l logLevel] [-a info|list|export] [-u uri]
`)
	flag.PrintDefaults()
}
