package main

import (
	"github.com/datarobot-community/drdb-connect/internal/cmd"
	"github.com/datarobot-community/drdb-connect/internal/utils"
)

func main() {
	utils.ConfigureDRUserAgent()
	cmd.Execute()
}
