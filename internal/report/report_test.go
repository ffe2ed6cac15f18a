package report

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/steveyegge/iamsync/internal/reconcile"
)

func TestLines(t *testing.T) {
	tests := []struct {
		name string
		out  reconcile.Outcome
		want []string
	}{
		{
			name: "new user with groups",
			out:  reconcile.Outcome{User: "alice", Created: true, GroupChanged: true},
			want: []string{"alice: user created", "alice: groups updated"},
		},
		{
			name: "every change",
			out:  reconcile.Outcome{User: "bob", Created: true, Tagged: true, GroupChanged: true},
			want: []string{"bob: user created", "bob: tags updated", "bob: groups updated"},
		},
		{
			name: "tags only",
			out:  reconcile.Outcome{User: "carol", Tagged: true},
			want: []string{"carol: tags updated"},
		},
		{
			name: "nothing",
			out:  reconcile.Outcome{User: "dave"},
			want: []string{"dave: No changes."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Lines(tt.out)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Lines() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	results := []reconcile.Result{
		{Outcome: reconcile.Outcome{User: "a", Created: true, GroupChanged: true}},
		{Outcome: reconcile.Outcome{User: "b"}},
		{Outcome: reconcile.Outcome{User: "c", Created: true}, Err: errors.New("boom")},
		{Outcome: reconcile.Outcome{User: "d", Tagged: true}},
		{Outcome: reconcile.Outcome{User: "e"}, Skipped: true},
	}

	got := Summarize(results)
	want := Summary{Users: 5, Created: 2, Tagged: 1, GroupChanged: 1, Unchanged: 1, Failed: 1, Skipped: 1}
	if got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}
	if !strings.HasSuffix(got.String(), ", 1 skipped") {
		t.Errorf("String() = %q, want skipped count", got.String())
	}
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, []reconcile.Result{
		{Outcome: reconcile.Outcome{User: "alice", Created: true, GroupChanged: true}},
		{Outcome: reconcile.Outcome{User: "bob"}},
		{Outcome: reconcile.Outcome{User: "carol"}, Err: errors.New("access denied")},
		{Outcome: reconcile.Outcome{User: "dave"}, Skipped: true},
	})
	out := buf.String()

	for _, want := range []string{
		"alice: user created",
		"alice: groups updated",
		"bob: No changes.",
		"carol: access denied",
		"dave: skipped",
		"4 users: 1 created, 0 tagged, 1 group changes, 1 unchanged, 1 failed, 1 skipped",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"alice: No changes.", "carol: No changes."} {
		if strings.Contains(out, unwanted) {
			t.Errorf("output contains %q:\n%s", unwanted, out)
		}
	}
}
