package accnt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JoshuaWu7/kernel/accnt"
)

func TestUtaddAndSystaddAccumulate(t *testing.T) {
	a := &accnt.Accnt_t{}
	a.Utadd(100)
	a.Utadd(50)
	a.Systadd(10)

	u := a.Usage()
	require.Equal(t, time.Duration(150), u.User)
	require.Equal(t, time.Duration(10), u.Sys)
}

func TestAddMergesIntoParent(t *testing.T) {
	parent := &accnt.Accnt_t{}
	parent.Utadd(100)

	child := &accnt.Accnt_t{}
	child.Utadd(30)
	child.Systadd(5)

	parent.Add(child)

	u := parent.Usage()
	require.Equal(t, time.Duration(130), u.User)
	require.Equal(t, time.Duration(5), u.Sys)
}

func TestFinishAddsElapsedSystemTime(t *testing.T) {
	a := &accnt.Accnt_t{}
	start := a.Now()
	a.Finish(start)
	u := a.Usage()
	require.GreaterOrEqual(t, u.Sys, time.Duration(0))
}
