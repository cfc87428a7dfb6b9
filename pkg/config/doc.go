/*
Package config resolves debughostd's effective runtime configuration from
cobra flags, DEBUGHOST_-prefixed environment variables, an optional YAML
file, and built-in defaults, in that precedence order, via spf13/viper.
*/
package config
