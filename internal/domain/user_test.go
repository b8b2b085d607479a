package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_DisplayName(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{
			name: "full name",
			user: User{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
			want: "Ada Lovelace",
		},
		{
			name: "first name only",
			user: User{FirstName: "Ada", Email: "ada@example.com"},
			want: "Ada",
		},
		{
			name: "last name only",
			user: User{LastName: "Lovelace", Email: "ada@example.com"},
			want: "Lovelace",
		},
		{
			name: "falls back to email",
			user: User{Email: "ada@example.com"},
			want: "ada@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.DisplayName())
		})
	}
}

func TestProfilePatch_Empty(t *testing.T) {
	assert.True(t, ProfilePatch{}.Empty())

	name := "Ada"
	assert.False(t, ProfilePatch{FirstName: &name}.Empty())

	empty := ""
	// Present-but-empty is still a patch; it must clear the stored value.
	assert.False(t, ProfilePatch{LastName: &empty}.Empty())
}
