package exo

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdeslauriers/portability/pkg/data"
)

func TestParse(t *testing.T) {

	config, err := Parse([]string{"-sec", "-sc", "-r", "myactivity.search, myactivity.youtube,"})
	require.NoError(t, err)

	assert.True(t, config.Secret)
	assert.True(t, config.Scopes)
	assert.Equal(t, "portability", config.ServiceName)
	assert.Equal(t, []string{"myactivity.search", "myactivity.youtube"}, config.Resources)
}

func TestExecuteRequiresCommand(t *testing.T) {

	err := New(Config{ServiceName: "portability"}).Execute(&bytes.Buffer{})
	assert.Error(t, err)
}

func TestSecretGen(t *testing.T) {

	var out bytes.Buffer
	require.NoError(t, New(Config{ServiceName: "portability", Secret: true}).Execute(&out))

	line := strings.TrimSpace(out.String())
	name, secret, ok := strings.Cut(line, "=")
	require.True(t, ok)
	assert.Equal(t, "PORTABILITY_FIELD_LEVEL_AES_GCM_SECRET", name)

	cryptor, err := data.NewServiceAesGcmKey(secret)
	require.NoError(t, err)

	ciphertext, err := cryptor.EncryptServiceData("a1")
	require.NoError(t, err)
	plaintext, err := cryptor.DecryptServiceData(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "a1", plaintext)
}

func TestScopes(t *testing.T) {

	file := filepath.Join(t.TempDir(), "provider.yaml")
	require.NoError(t, os.WriteFile(file, []byte("resources:\n  - myactivity.maps\n"), 0600))

	tests := []struct {
		name    string
		config  Config
		want    string
		wantErr bool
	}{
		{
			name:   "flag resources",
			config: Config{Scopes: true, Resources: []string{"myactivity.search", "myactivity.maps"}},
			want:   "https://www.googleapis.com/auth/dataportability.myactivity.search https://www.googleapis.com/auth/dataportability.myactivity.maps\n",
		},
		{
			name:   "file resources",
			config: Config{Scopes: true, File: file},
			want:   "https://www.googleapis.com/auth/dataportability.myactivity.maps\n",
		},
		{
			name:    "no resources",
			config:  Config{Scopes: true},
			wantErr: true,
		},
		{
			name:    "invalid resource",
			config:  Config{Scopes: true, Resources: []string{"../etc"}},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			err := New(tc.config).Execute(&out)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.String())
		})
	}
}
