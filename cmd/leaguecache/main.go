package main

import (
	"fmt"
	"os"

	"github.com/fulldump/goconfig"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/zengm-games/zengm-sub016/bootstrap"
	"github.com/zengm-games/zengm-sub016/configuration"
)

var banner = `
  _                                                  _          
 | |    ___  __ _  __ _ _   _  ___    ___ __ _  ___| |__   ___ 
 | |   / _ \/ _' |/ _' | | | |/ _ \  / __/ _' |/ __| '_ \ / _ \
 | |__|  __/ (_| | (_| | |_| |  __/ | (_| (_| | (__| | | |  __/
 |_____\___|\__,_|\__, |\__,_|\___|  \___\__,_|\___|_| |_|\___|
                  |___/               version ` + bootstrap.VERSION + `
`

func main() {

	c := configuration.Default()
	goconfig.Read(&c)

	if c.Version {
		fmt.Println("Version:", bootstrap.VERSION)
		return
	}

	if c.ShowBanner {
		fmt.Println(banner)
	}

	if c.ShowConfig {
		json.MarshalWrite(os.Stdout, c, jsontext.WithIndent("    "))
		fmt.Println()
	}

	start, _ := bootstrap.Bootstrap(&c)
	start()
}
