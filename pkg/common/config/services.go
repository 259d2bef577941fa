package config

import "github.com/fystack/payment-gateway/pkg/common/enum"

type Services struct {
	Port  int         `yaml:"port" validate:"required,min=1,max=65535"`
	Nats  NatsConfig  `yaml:"nats"`
	KVS   KVSConfig   `yaml:"kvstore"`
	Redis RedisConfig `yaml:"redis"`
}

type NatsConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
}

func (n NatsConfig) Enabled() bool {
	return n.URL != ""
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type KVSConfig struct {
	Type   enum.KVStoreType `yaml:"type" validate:"omitempty,oneof=badger consul memory"`
	Consul ConsulConfig     `yaml:"consul"`
	Badger BadgerConfig     `yaml:"badger"`
}

type ConsulConfig struct {
	Scheme   string         `yaml:"scheme"`
	Address  string         `yaml:"address"`
	Folder   string         `yaml:"folder"`
	Token    string         `yaml:"token"`
	HttpAuth HttpAuthConfig `yaml:"http_auth"`
}

type HttpAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type BadgerConfig struct {
	Directory string `yaml:"directory"`
	Prefix    string `yaml:"prefix"`
}
