package opts

import (
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestListOptsWithoutValidator(t *testing.T) {
	o := NewListOpts(nil)
	assert.Check(t, is.Equal(o.String(), ""))
	assert.Check(t, o.Set("index.html"))
	assert.Check(t, o.Set("index.htm"))
	assert.Check(t, is.Equal(o.Len(), 2))
	assert.Check(t, is.DeepEqual(o.GetAll(), []string{"index.html", "index.htm"}))
	assert.Check(t, is.Equal(o.String(), "[index.html index.htm]"))
	assert.Check(t, is.Equal(o.Type(), "list"))
}

func TestListOptsWithValidator(t *testing.T) {
	o := NewListOpts(ValidateFileName)
	assert.Check(t, o.Set("index.html"))
	assert.Check(t, is.ErrorContains(o.Set("../index.html"), "must not contain a path separator"))
	assert.Check(t, is.ErrorContains(o.Set(".."), "must not contain a path separator"))
	assert.Check(t, is.DeepEqual(o.GetAll(), []string{"index.html"}))
}

func TestNamedListOpts(t *testing.T) {
	var hosts []string
	o := NewNamedListOptsRef("hosts", &hosts, ValidateHost)
	assert.Check(t, is.Equal(o.Name(), "hosts"))
	assert.Check(t, o.Set("tcp://:8080"))
	assert.Check(t, is.DeepEqual(hosts, []string{"tcp://:8080"}))
	assert.Check(t, o.Set("tcp://:8080/path") != nil)
}
