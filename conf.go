package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

var conf *Conf

type Conf struct {
	App struct {
		Version string `toml:"version"`
		Title   string `toml:"title"`
	} `toml:"app"`
	Source struct {
		URI       string `toml:"uri"`
		Directory string `toml:"directory"`
		Mode      string `toml:"mode"`
		Batch     int    `toml:"batch"`
	} `toml:"source"`
	Output struct {
		Directory      string `toml:"directory"`
		Pattern        string `toml:"pattern"`
		LogDir         string `toml:"logDir"`
		OutputTerminal bool   `toml:"outputTerminal"`
	} `toml:"output"`
	Task struct {
		Workers int    `toml:"workers"`
		BufSize int    `toml:"bufSize"`
		Geojson string `toml:"geojson"`
	} `toml:"task"`
	BreakPoint struct {
		SaveFilePath string `toml:"saveFilePath"`
	} `toml:"breakPoint"`
}

// InitConf 初始化配置
func InitConf(cfgFile string) {
	if cfgFile == "" {
		cfgFile = "conf.toml"
	}
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("config file(%s) not exist", cfgFile)
		os.Exit(1)
	}
	viper.SetConfigType("toml")
	viper.SetConfigFile(cfgFile)
	viper.AutomaticEnv() // read in environment variables that match
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("read config file(%s) error, details: %s\n", viper.ConfigFileUsed(), err)
	}
	setDefaults(viper.GetViper())

	if err := viper.Unmarshal(&conf); err != nil {
		panic("配置文件解析失败")
	}
	if uriFlag != "" {
		conf.Source.URI = uriFlag
	}
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.version", "v 0.1.0")
	v.SetDefault("app.title", "MBTiles Reader")
	v.SetDefault("source.directory", ".")
	v.SetDefault("source.mode", "ro")
	v.SetDefault("source.batch", 100)
	v.SetDefault("output.directory", "output")
	v.SetDefault("output.pattern", DefaultPattern)
	v.SetDefault("output.outputTerminal", true)
	v.SetDefault("task.workers", 4)
	v.SetDefault("task.bufSize", 64)
	v.SetDefault("breakPoint.saveFilePath", "breakpoint")
}
