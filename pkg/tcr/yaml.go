package tcr

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ConvertYAMLFileToConfig opens a file.yaml and converts to RedisSeasoning.
func ConvertYAMLFileToConfig(fileNamePath string) (*RedisSeasoning, error) {

	byteValue, err := os.ReadFile(fileNamePath)
	if err != nil {
		return nil, err
	}

	config := &RedisSeasoning{}
	err = yaml.Unmarshal(byteValue, config)

	return config, err
}
