package dr

import (
	"github.com/datarobot-community/drdb-connect/internal/utils"
)

// AmbientClient builds a client from the environment the DataRobot SDKs read when no
// client was configured explicitly (DATAROBOT_ENDPOINT/DATAROBOT_API_TOKEN or drconfig.yaml).
func AmbientClient(opts ...Option) (*Client, error) {
	endpoint, token, err := utils.AmbientDataRobot()
	if err != nil {
		return nil, err
	}
	return NewClient(endpoint, token, opts...)
}
