// Package env loads configuration from environment variables, keeping the
// supplied values as defaults.
package env

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/circleci/liverequests/config/secret"
)

type Var struct {
	env     string
	envType string
	def     interface{}
}

func (f Var) String() string {
	return fmt.Sprintf("%-34s %-8s (%v)", f.env, f.envType, f.def)
}

func (f Var) Name() string {
	return f.env
}

type Loader struct {
	vars map[string]Var
	err  error
}

func NewLoader() *Loader {
	return &Loader{
		vars: make(map[string]Var),
	}
}

// Err returns every problem met while loading, or nil.
func (l *Loader) Err() error {
	return l.err
}

// SecretFromFile sets fld to the content of the file named by env.
// The default held in fld is the secret itself, not a path.
// An unset or empty env leaves fld alone; an unreadable file is added to Err.
func (l *Loader) SecretFromFile(fld *secret.String, env string) {
	l.addVar(*fld, env, "file")
	fn, ok := os.LookupEnv(env)
	if !ok || fn == "" {
		return
	}
	content, err := os.ReadFile(fn) // #nosec G304 - the path is operator supplied
	if err != nil {
		l.err = multierror.Append(l.err, fmt.Errorf("failed to read secret file: %w", err))
		return
	}
	*fld = secret.String(strings.TrimSpace(string(content)))
}

// String sets fld to the value of env if it is set.
func (l *Loader) String(fld *string, env string) {
	l.addVar(*fld, env, "string")
	val, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	*fld = val
}

// Bool sets fld from env using the strings accepted by strconv.ParseBool.
// An unparsable value leaves fld alone and is added to Err.
func (l *Loader) Bool(fld *bool, env string) {
	l.addVar(*fld, env, "bool")
	val, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		l.err = multierror.Append(l.err, fmt.Errorf("env var: %q caused an error: %w", env, err))
		return
	}
	*fld = b
}

// Int sets fld from env parsed as a base 10 integer.
// An unparsable value leaves fld alone and is added to Err.
func (l *Loader) Int(fld *int, env string) {
	l.addVar(*fld, env, "int")
	val, ok := os.LookupEnv(env)
	if !ok {
		return
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		l.err = multierror.Append(l.err, fmt.Errorf("env var: %q caused an error: %w", env, err))
		return
	}
	*fld = i
}

type Vars []Var

// Sort the vars v in place alphabetically
func (v Vars) Sort() {
	sort.Slice(v, func(i, j int) bool {
		return v[i].env < v[j].env
	})
}

// VarsUsed lists every variable the loader was asked for with its default,
// for printing as help.
func (l *Loader) VarsUsed() Vars {
	vars := make(Vars, 0, len(l.vars))
	const maxDefaultLen = 60
	for _, v := range l.vars {
		if def, ok := v.def.(string); ok {
			def = strings.ReplaceAll(def, "\n", "\\n")
			if len(def) > maxDefaultLen {
				def = def[:maxDefaultLen] + " ..."
			}
			v.def = def
		}
		vars = append(vars, v)
	}
	vars.Sort()
	return vars
}

func (l *Loader) addVar(def interface{}, env, envType string) {
	if _, ok := l.vars[env]; ok {
		panic("duplicate environment variable " + env)
	}
	l.vars[env] = Var{
		env:     env,
		envType: envType,
		def:     def,
	}
}
