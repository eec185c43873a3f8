package cluster

import (
	"context"
	"slices"
	"testing"

	"github.com/seantiz/clusterwork/internal/model"
)

func TestParseMembers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []model.Member
	}{
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name:  "bare addresses get default role",
			input: "10.0.0.1:7070, 10.0.0.2:7070",
			want: []model.Member{
				{ID: "10.0.0.1:7070", Addr: "10.0.0.1:7070", Roles: []string{"compute"}},
				{ID: "10.0.0.2:7070", Addr: "10.0.0.2:7070", Roles: []string{"compute"}},
			},
		},
		{
			name:  "explicit roles",
			input: "vsock://3:7070#compute|gpu,tcp://h:1#frontend",
			want: []model.Member{
				{ID: "vsock://3:7070", Addr: "vsock://3:7070", Roles: []string{"compute", "gpu"}},
				{ID: "tcp://h:1", Addr: "tcp://h:1", Roles: []string{"frontend"}},
			},
		},
		{
			name:  "empty role list falls back to default",
			input: "h:1#",
			want: []model.Member{
				{ID: "h:1", Addr: "h:1", Roles: []string{"compute"}},
			},
		},
		{
			name:  "trailing comma",
			input: "h:1,",
			want: []model.Member{
				{ID: "h:1", Addr: "h:1", Roles: []string{"compute"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMembers(tt.input, model.RoleCompute)
			if err != nil {
				t.Fatalf("ParseMembers: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d members, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i].ID != tt.want[i].ID || got[i].Addr != tt.want[i].Addr || !slices.Equal(got[i].Roles, tt.want[i].Roles) {
					t.Errorf("member %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseMembersErrors(t *testing.T) {
	for _, input := range []string{"#compute", "h:1,h:1"} {
		if _, err := ParseMembers(input, model.RoleCompute); err == nil {
			t.Errorf("ParseMembers(%q) succeeded, want error", input)
		}
	}
}

func TestStaticDiscovererReturnsCopy(t *testing.T) {
	d := NewStaticDiscoverer([]model.Member{{ID: "a", Addr: "a"}})

	got, err := d.Members(context.Background())
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	got[0].ID = "mutated"

	again, _ := d.Members(context.Background())
	if again[0].ID != "a" {
		t.Errorf("discoverer state mutated through returned slice: %q", again[0].ID)
	}
}
