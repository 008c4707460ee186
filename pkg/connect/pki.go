package connect

// Pki holds base64'd *.pem files: container env vars --> k8s secret
type Pki struct {
	CertFile string
	KeyFile  string
	CaFiles  []string
}

// HasKeyPair reports whether a client or server certificate is present.
func (p *Pki) HasKeyPair() bool {
	return p != nil && p.CertFile != "" && p.KeyFile != ""
}
