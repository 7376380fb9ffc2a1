package ldp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"trellis.io/ldp/resource"
)

func TestComputeETagChangesWithModified(t *testing.T) {
	r1 := &resource.Resource{InteractionModel: resource.RDFSource, Modified: time.Unix(1000, 0)}
	r2 := &resource.Resource{InteractionModel: resource.RDFSource, Modified: time.Unix(2000, 0)}
	assert.NotEqual(t, ComputeETag(r1, false), ComputeETag(r2, false))
}

func TestComputeETagWeakFormat(t *testing.T) {
	r := &resource.Resource{InteractionModel: resource.RDFSource, Modified: time.Unix(1000, 0)}
	assert.Contains(t, ComputeETag(r, true), `W/"`)
	assert.NotContains(t, ComputeETag(r, false), `W/`)
}
