package config

import (
	"os"
	"strings"
)

type NodeConfig struct {
	URL  string     `yaml:"url"  json:"url"  validate:"required,url"`
	Auth AuthConfig `yaml:"auth" json:"auth"`
}

type AuthConfig struct {
	Type  string `yaml:"type"  json:"type"  validate:"omitempty,oneof=header query bearer basic"`
	Key   string `yaml:"key"   json:"key"`
	Value string `yaml:"value" json:"value"`
}

// finalizeNodes substitutes ${VAR} references in node urls and auth values.
func (c Chains) finalizeNodes() {
	for name, chain := range c {
		nodes := make([]NodeConfig, len(chain.Nodes))
		for i, n := range chain.Nodes {
			n.URL = substituteEnvVars(n.URL)
			n.Auth.Value = substituteEnvVars(n.Auth.Value)
			nodes[i] = n
		}
		chain.Nodes = nodes
		c[name] = chain
	}
}

func substituteEnvVars(s string) string {
	if s == "" {
		return s
	}
	for {
		start := strings.Index(s, "${")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "}")
		if end == -1 {
			break
		}
		end += start
		varName := s[start+2 : end]
		s = strings.ReplaceAll(s, "${"+varName+"}", os.Getenv(varName))
	}
	return s
}
