package jelrec_test

import (
	"errors"
	"testing"

	"github.com/dekarrin/jelrec"
	"github.com/dekarrin/jelrec/inmem"
	"github.com/stretchr/testify/assert"
)

func Test_Registry_AddHost(t *testing.T) {
	assert := assert.New(t)

	reg := jelrec.NewRegistry("", nil)
	defer reg.Close()

	assert.NoError(reg.AddHost("primary", inmem.Opener(""), false))

	err := reg.AddHost("primary", inmem.Opener(""), false)
	assert.True(errors.Is(err, jelrec.ErrDuplicateKey))

	assert.NoError(reg.AddHost("primary", inmem.Opener(""), true))

	err = reg.AddHost("other", nil, false)
	assert.True(errors.Is(err, jelrec.ErrBadArgument))
}

func Test_Registry_Backend(t *testing.T) {
	assert := assert.New(t)

	reg := jelrec.NewRegistry("", nil)
	defer reg.Close()
	assert.NoError(reg.AddHost("primary", inmem.Opener(""), false))

	be, err := reg.Backend("primary")
	if !assert.NoError(err) {
		return
	}
	assert.NotNil(be)

	// same connection on repeat use
	again, err := reg.Backend("primary")
	if assert.NoError(err) {
		assert.Same(be, again)
	}

	_, err = reg.Backend("nope")
	assert.True(errors.Is(err, jelrec.ErrKeyNotFound))
}

func Test_Registry_DBName(t *testing.T) {
	assert := assert.New(t)

	reg := jelrec.NewRegistry("test_", nil)
	assert.Equal("test_", reg.Prefix())
	assert.Equal("test_appdata", reg.DBName("appdata"))

	reg = jelrec.NewRegistry("", nil)
	assert.Equal("appdata", reg.DBName("appdata"))
}

func Test_Registry_CloseReopens(t *testing.T) {
	assert := assert.New(t)

	reg := jelrec.NewRegistry("", nil)
	assert.NoError(reg.AddHost("primary", inmem.Opener(""), false))

	first, err := reg.Backend("primary")
	if !assert.NoError(err) {
		return
	}
	assert.NoError(reg.Close())

	// hosts come back on next use after a close
	second, err := reg.Backend("primary")
	if assert.NoError(err) {
		assert.NotSame(first, second)
	}
	assert.NoError(reg.Close())
}
