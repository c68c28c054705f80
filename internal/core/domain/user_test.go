package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddDeviceToken_CapsAtFive(t *testing.T) {
	u := &User{}
	for _, tok := range []string{"t1", "t2", "t3", "t4", "t5", "t6"} {
		assert.True(t, u.AddDeviceToken(tok))
	}
	assert.Equal(t, []string{"t2", "t3", "t4", "t5", "t6"}, u.FCMTokens)

	assert.False(t, u.AddDeviceToken("t4"), "duplicate ignored")
	assert.Equal(t, []string{"t2", "t3", "t4", "t5", "t6"}, u.FCMTokens)
}

func TestUser_Links(t *testing.T) {
	u := &User{Role: RoleParent, StudentIDs: []string{"s1"}, AssignedClassIDs: []string{"LKG"}}
	assert.True(t, u.IsParent())
	assert.False(t, u.IsAdmin())
	assert.True(t, u.HasStudent("s1"))
	assert.False(t, u.HasStudent("s2"))
	assert.True(t, u.AssignedTo("LKG"))
	assert.False(t, u.AssignedTo("UKG"))
}

func TestProfile_HidesSecretsAndFillsSlices(t *testing.T) {
	u := &User{ID: "u1", Email: "a@b.test", HashedPassword: "secret", Role: RoleTeacher}
	p := u.Profile()
	assert.Equal(t, "u1", p.ID)
	assert.NotNil(t, p.StudentIDs)
	assert.NotNil(t, p.AssignedClassIDs)
}
