package storage

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"testing"
)

// execRepo records the statements passed to Exec.
type execRepo struct {
	stmts   []string
	execErr error
}

func (r *execRepo) CopyFrom(_ context.Context, _ []string, rows [][]any) (int64, error) {
	return int64(len(rows)), nil
}

func (r *execRepo) Exec(_ context.Context, sql string) error {
	r.stmts = append(r.stmts, sql)
	return r.execErr
}

func (r *execRepo) Close() {}

func TestNew_PassesSinkConfig(t *testing.T) {
	t.Parallel()

	var got Config
	Register("cfgcheck", func(_ context.Context, cfg Config) (Repository, error) {
		got = cfg
		return &execRepo{}, nil
	})

	want := Config{
		Kind:    "cfgcheck",
		DSN:     "file:out.db",
		Table:   "products",
		Columns: []string{"Handle", "Title", "Status"},
	}
	if _, err := New(context.Background(), want); err != nil {
		t.Fatalf("New: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("factory saw %+v, want %+v", got, want)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	boom := errors.New("dial failed")
	Register("dialfail", func(context.Context, Config) (Repository, error) { return nil, boom })

	tests := []struct {
		kind    string
		wantIs  error
		wantMsg string
	}{
		{kind: "", wantMsg: "unsupported storage.kind="},
		{kind: "mysql", wantMsg: "unsupported storage.kind=mysql"},
		{kind: "dialfail", wantIs: boom},
	}
	for _, tt := range tests {
		_, err := New(context.Background(), Config{Kind: tt.kind})
		if err == nil {
			t.Errorf("New(%q): want error", tt.kind)
			continue
		}
		if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
			t.Errorf("New(%q) = %v, want %v", tt.kind, err, tt.wantIs)
		}
		if tt.wantMsg != "" && err.Error() != tt.wantMsg {
			t.Errorf("New(%q) = %q, want %q", tt.kind, err.Error(), tt.wantMsg)
		}
	}
}

func TestRegister_Replaces(t *testing.T) {
	t.Parallel()

	first, second := &execRepo{}, &execRepo{}
	Register("swap", func(context.Context, Config) (Repository, error) { return first, nil })
	Register("swap", func(context.Context, Config) (Repository, error) { return second, nil })

	repo, err := New(context.Background(), Config{Kind: "swap"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if repo != second {
		t.Fatal("New used the replaced factory")
	}
}

func TestListKinds(t *testing.T) {
	t.Parallel()

	Register("zz-kind", func(context.Context, Config) (Repository, error) { return &execRepo{}, nil })
	Register("aa-kind", func(context.Context, Config) (Repository, error) { return &execRepo{}, nil })

	kinds := ListKinds()
	if !sort.StringsAreSorted(kinds) {
		t.Fatalf("ListKinds = %v, want sorted", kinds)
	}
	for _, k := range []string{"aa-kind", "zz-kind"} {
		if i := sort.SearchStrings(kinds, k); i == len(kinds) || kinds[i] != k {
			t.Fatalf("ListKinds = %v, missing %q", kinds, k)
		}
	}

	kinds[0] = "mutated"
	if again := ListKinds(); again[0] == "mutated" {
		t.Fatal("ListKinds shares its slice with the registry")
	}
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	RegisterDDL("ddlcheck", func(table string, cols []string) (string, error) {
		if len(cols) == 0 {
			return "", errors.New("no columns")
		}
		return "CREATE TABLE " + table + " (" + strings.Join(cols, " TEXT, ") + " TEXT)", nil
	})

	tests := []struct {
		name    string
		cfg     Config
		execErr error
		want    string
		wantErr string
	}{
		{
			name: "creates",
			cfg:  Config{Kind: "ddlcheck", Table: "t", Columns: []string{"a", "b"}},
			want: "CREATE TABLE t (a TEXT, b TEXT)",
		},
		{
			name:    "unknown_kind",
			cfg:     Config{Kind: "nope", Table: "t", Columns: []string{"a"}},
			wantErr: `no DDL builder registered for storage.kind="nope"`,
		},
		{
			name:    "builder_error",
			cfg:     Config{Kind: "ddlcheck", Table: "t"},
			wantErr: "build DDL: no columns",
		},
		{
			name:    "exec_error",
			cfg:     Config{Kind: "ddlcheck", Table: "t", Columns: []string{"a"}},
			execErr: errors.New("read-only"),
			wantErr: "apply DDL: read-only",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &execRepo{execErr: tt.execErr}
			err := EnsureTable(context.Background(), repo, tt.cfg)
			if tt.wantErr != "" {
				if err == nil || err.Error() != tt.wantErr {
					t.Fatalf("EnsureTable error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("EnsureTable: %v", err)
			}
			if len(repo.stmts) != 1 || repo.stmts[0] != tt.want {
				t.Fatalf("stmts = %q, want [%q]", repo.stmts, tt.want)
			}
		})
	}
}
