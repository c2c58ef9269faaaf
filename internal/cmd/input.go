package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/datarobot-community/drdb-connect/internal/dbx"
	"github.com/datarobot-community/drdb-connect/internal/utils"
	"golang.org/x/term"
)

// readConfig reads the configuration file and returns a Config object.
// If the configuration file is not found, that's OK: flags and DRDBX_* variables still apply.
// If the configuration file is found but invalid, print an error and exit.
func readConfig() *utils.Config {
	config, err := utils.InitConfig(v, configFile)
	if err != nil {
		var configNotFound *utils.ConfigNotFound
		if !errors.As(err, &configNotFound) {
			fmt.Printf("Error reading the configuration file: %v\n", err)
			os.Exit(1)
		}
		if configFile != "" {
			fmt.Printf("Configuration file %s not found\n", configFile)
			os.Exit(1)
		}
		config, err = utils.Decode(v)
		if err != nil {
			log.Fatalf("Error reading configuration: %v", err)
		}
	}
	return config
}

// configDbxCreds fills in the Databricks host and token, from a .databrickscfg profile if
// one was named, otherwise by asking the user.
func configDbxCreds(config *utils.Config, needHost bool) {
	if config.DbxProfile != "" && (config.DbxHost == "" || config.DbxToken == "") {
		client, err := dbx.AuthFromFile("", config.DbxProfile)
		if err != nil {
			log.Fatalf("Error authenticating to Databricks with profile %s: %v", config.DbxProfile, err)
		}
		if config.DbxHost == "" {
			config.DbxHost = client.Config.Host
		}
		if config.DbxToken == "" {
			config.DbxToken = client.Config.Token
		}
		fmt.Println("Using Databricks profile " + config.DbxProfile)
	}
	if needHost && config.DbxHost == "" {
		config.DbxHost = inputDbxHost()
	}
	if config.DbxToken == "" {
		config.DbxToken = inputStringValue("Databricks personal access token", true, false)
	}
}

func configDrCreds(config *utils.Config) {
	if config.DrEndpoint == "" {
		config.DrEndpoint = inputStringValue("DataRobot API endpoint (default: "+utils.DefaultDREndpoint+")", false, false, utils.DefaultDREndpoint)
	}
	if config.DrToken == "" {
		config.DrToken = inputStringValue("DataRobot API token", true, false)
	}
}

// stdin is where prompts read answers from.
var stdin io.Reader = os.Stdin

// inputStringValue prompts the user to enter a string value for a given name.
// If hideIt is true, the input will not be echoed to the terminal.
// It exits if no more input can be read.
func inputStringValue(name string, hideIt bool, allowEmpty bool, defaultValue ...string) string {
	value, err := readStringValue(name, hideIt, allowEmpty, defaultValue...)
	if err != nil {
		log.Fatalf("Error reading %s: %v", name, err)
	}
	return value
}

// readStringValue prompts until it reads an acceptable value. End of input and
// terminal errors are returned rather than retried.
func readStringValue(name string, hideIt bool, allowEmpty bool, defaultValue ...string) (string, error) {
	var value string
	for {
		var prompt string
		if hideIt {
			prompt = fmt.Sprintf("Enter %s [will be hidden for security]: ", name)
		} else {
			prompt = fmt.Sprintf("Enter %s: ", name)
		}
		fmt.Print(prompt)
		var err error
		if hideIt {
			value, err = readPassword()
			if err != nil {
				return "", err
			}
		} else {
			_, err = fmt.Fscanln(stdin, &value)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return "", err
			}
			if err.Error() == "unexpected newline" {
				if len(defaultValue) > 0 {
					return defaultValue[0], nil
				}
				if allowEmpty {
					fmt.Println("No input provided for optional parameter. Continuing...")
					return "", nil
				}
				continue
			}
			fmt.Printf("Error reading %s: %v. Please try again.\n", name, err)
			continue
		}
		value = strings.TrimSpace(value) // Remove leading/trailing whitespace
		if value != "" || allowEmpty {
			return value, nil
		}
	}
}

func inputDbxHost() string {
	for {
		dbxHost := strings.TrimSuffix(inputStringValue(
			"Databricks workspace URL [e.g., https://adb-1234567890123456.7.azuredatabricks.net]", false, false), "/")
		if _, err := dbx.ParseHost(dbxHost); err != nil {
			fmt.Printf("%v. Please try again.\n", err)
			continue
		}
		return dbxHost
	}
}

// readPassword reads a password from stdin without echoing it to the terminal.
// It returns the password as a string.
func readPassword() (string, error) {
	// Get the file descriptor for stdin
	fd := int(syscall.Stdin)

	// Read password without echo
	password, err := term.ReadPassword(fd)
	if err != nil {
		return "", err
	}

	// Print a newline since ReadPassword doesn't do it
	fmt.Println()

	return strings.TrimSpace(string(password)), nil
}
