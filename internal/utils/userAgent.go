package utils

import (
	"github.com/databricks/databricks-sdk-go/useragent"
)

func ConfigureDRUserAgent() {
	useragent.WithProduct("drdb-connect", Version)
	useragent.WithPartner("DataRobot")
}
