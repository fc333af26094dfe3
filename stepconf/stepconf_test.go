package stepconf

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapEnv map[string]string

func (m mapEnv) Get(key string) string {
	return m[key]
}

type testConfig struct {
	Name         string        `env:"NAME"`
	Attempts     int           `env:"ATTEMPTS"`
	Verbose      bool          `env:"VERBOSE"`
	Items        []string      `env:"ITEMS"`
	Token        Secret        `env:"TOKEN,required"`
	Delay        time.Duration `env:"DELAY"`
	ExportMethod string        `env:"EXPORT_METHOD,opt[dev,qa,prod]"`
	Ptr          *string       `env:"PTR"`
	EmptyPtr     *string       `env:"EMPTY_PTR"`
	NoTag        string
}

func TestParse(t *testing.T) {
	cfg := testConfig{Attempts: 30, Delay: 10 * time.Second}
	envs := mapEnv{
		"NAME":          "reel",
		"VERBOSE":       "yes",
		"ITEMS":         "a|b|c",
		"TOKEN":         "secret-token",
		"DELAY":         "250ms",
		"EXPORT_METHOD": "qa",
		"PTR":           "value",
	}

	require.NoError(t, NewInputParser(envs).Parse(&cfg))

	assert.Equal(t, "reel", cfg.Name)
	assert.Equal(t, 30, cfg.Attempts, "empty value keeps the default")
	assert.True(t, cfg.Verbose)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Items)
	assert.Equal(t, Secret("secret-token"), cfg.Token)
	assert.Equal(t, 250*time.Millisecond, cfg.Delay)
	assert.Equal(t, "qa", cfg.ExportMethod)
	require.NotNil(t, cfg.Ptr)
	assert.Equal(t, "value", *cfg.Ptr)
	assert.Nil(t, cfg.EmptyPtr)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		envs    mapEnv
		wantKey string
	}{
		{
			name:    "missing required",
			envs:    mapEnv{"EXPORT_METHOD": "dev"},
			wantKey: "TOKEN",
		},
		{
			name:    "invalid int",
			envs:    mapEnv{"TOKEN": "t", "EXPORT_METHOD": "dev", "ATTEMPTS": "many"},
			wantKey: "ATTEMPTS",
		},
		{
			name:    "invalid bool",
			envs:    mapEnv{"TOKEN": "t", "EXPORT_METHOD": "dev", "VERBOSE": "maybe"},
			wantKey: "VERBOSE",
		},
		{
			name:    "invalid duration",
			envs:    mapEnv{"TOKEN": "t", "EXPORT_METHOD": "dev", "DELAY": "10"},
			wantKey: "DELAY",
		},
		{
			name:    "value not in options",
			envs:    mapEnv{"TOKEN": "t", "EXPORT_METHOD": "staging"},
			wantKey: "EXPORT_METHOD",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg testConfig
			err := NewInputParser(tt.envs).Parse(&cfg)
			require.Error(t, err)

			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Contains(t, parseErr.Errs, tt.wantKey)
			assert.Contains(t, err.Error(), tt.wantKey)
		})
	}
}

func TestParse_NotStructPointer(t *testing.T) {
	var cfg testConfig
	assert.ErrorIs(t, NewInputParser(mapEnv{}).Parse(cfg), ErrNotStructPtr)

	var s string
	assert.ErrorIs(t, NewInputParser(mapEnv{}).Parse(&s), ErrNotStructPtr)
}

func TestParse_UnknownConstraint(t *testing.T) {
	var cfg struct {
		Length string `env:"LENGTH,length"`
	}
	assert.Error(t, NewInputParser(mapEnv{"LENGTH": "1"}).Parse(&cfg))
}

func TestParse_PathConstraints(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "caption.txt")
	require.NoError(t, os.WriteFile(file, []byte("caption"), 0644))

	type config struct {
		File string `env:"FILE,file"`
		Dir  string `env:"DIR,dir"`
	}

	tests := []struct {
		name    string
		envs    mapEnv
		wantErr bool
	}{
		{name: "existing paths", envs: mapEnv{"FILE": file, "DIR": dir}},
		{name: "unset paths", envs: mapEnv{}},
		{name: "missing file", envs: mapEnv{"FILE": filepath.Join(dir, "missing.txt")}, wantErr: true},
		{name: "dir given as file", envs: mapEnv{"FILE": dir}, wantErr: true},
		{name: "file given as dir", envs: mapEnv{"DIR": file}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg config
			err := NewInputParser(tt.envs).Parse(&cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValueOptionsWithComma(t *testing.T) {
	var cfg struct {
		Option string `env:"OPTION,opt[opt1,opt2,'opt1,opt2']"`
	}
	require.NoError(t, NewInputParser(mapEnv{"OPTION": "opt1,opt2"}).Parse(&cfg))
	assert.Equal(t, "opt1,opt2", cfg.Option)

	assert.Error(t, NewInputParser(mapEnv{"OPTION": ""}).Parse(&cfg))
}

func TestSecret_String(t *testing.T) {
	assert.Equal(t, "*****", Secret("token").String())
	assert.Equal(t, "", Secret("").String())
}

func Test_valueString(t *testing.T) {
	var (
		s = "test"
		i = 99
		b = true
	)
	var (
		sNilPtr *string
		iNilPtr *int64
	)

	tests := []struct {
		name string
		v    reflect.Value
		want string
	}{
		{"string", reflect.ValueOf(s), "test"},
		{"string ptr", reflect.ValueOf(&s), "test"},
		{"string nil-ptr", reflect.ValueOf(sNilPtr), ""},
		{"int", reflect.ValueOf(i), "99"},
		{"int ptr", reflect.ValueOf(&i), "99"},
		{"int nil-ptr", reflect.ValueOf(iNilPtr), ""},
		{"bool", reflect.ValueOf(b), "true"},
		{"duration", reflect.ValueOf(90 * time.Second), "1m30s"},
		{"secret", reflect.ValueOf(Secret("token")), "*****"},
		{"slice", reflect.ValueOf([]string{"a", "b"}), "a|b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valueString(tt.v))
		})
	}
}

func Test_toString(t *testing.T) {
	type printConfig struct {
		SimpleString       string `env:"simple_string"`
		FieldWithoutEnvTag string
		StringCanBeEmpty   string `env:"string_can_be_empty"`
		IntCanBeEmpty      int    `env:"int_can_be_empty"`
		SensitiveInput     Secret `env:"sensitive_input"`
		RequiredInput      string `env:"required_input,required"`
	}

	cfg := printConfig{
		SimpleString:       "simple value",
		FieldWithoutEnvTag: "no tag",
		SensitiveInput:     "my secret",
		RequiredInput:      "value",
	}

	expected := "\x1b[34;1mPrintConfig:\n\x1b[0m" +
		`- simple_string: simple value
- FieldWithoutEnvTag: no tag
- string_can_be_empty: <unset>
- int_can_be_empty: <unset>
- sensitive_input: *****
- required_input: value
`
	assert.Equal(t, expected, toString(&cfg))
}
