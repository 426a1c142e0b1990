/*
Package config resolves the daemon's runtime paths and tunables from
an optional omgd.yaml file and the environment: socket path, data
directory, pidfile, and the FastStatus publication path, following XDG
precedence with OMG_-prefixed overrides on top.

Environment variables are bound with github.com/kelseyhightower/
envconfig, a struct-tag-driven approach to process configuration —
fields carry their env var name and default as tags rather than
hand-rolled os.Getenv plumbing. The omgd.yaml file (ConfigFilePath,
loaded via gopkg.in/yaml.v3) only fills in tunables left unset by the
environment; an explicit OMG_* variable always wins. Config.DumpYAML
renders the resolved configuration back into that same shape for
`omgd doctor --dump-config`.
*/
package config
