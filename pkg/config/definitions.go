package config

type ServerTls string

const (
	NoTls       ServerTls = "none"
	StandardTls ServerTls = "standard"
	MutualTls   ServerTls = "mutual"
)

// SvcDefinition declares which groups of env vars a service needs at startup.
type SvcDefinition struct {
	ServiceName string
	Tls         ServerTls
	Requires    Requires
}

type Requires struct {
	Db            bool
	AesSecret     bool
	DbTls         bool
	ObjectStorage bool
	Provider      bool
}
