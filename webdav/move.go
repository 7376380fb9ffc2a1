package webdav

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"trellis.io/ldp/resource"
	"trellis.io/ldp/trelliserr"
	"trellis.io/ldp/webac"
)

// Move performs a recursive COPY followed by a recursive DELETE as one
// logical operation, per spec.md §4.8, after a cycle guard rejects moving a
// container into its own descendant.
func (h *Handler) Move(c echo.Context) error {
	ctx := c.Request().Context()
	srcID := h.internalID(c)
	dstID, err := h.destinationID(c)
	if err != nil {
		return err
	}

	if err := h.LDP.Authorize(c, srcID, webac.ModeWrite); err != nil {
		return err
	}
	if err := h.LDP.Authorize(c, path.Dir(dstID), webac.ModeAppend); err != nil {
		return err
	}
	if err := checkMoveCycle(ctx, h.LDP.Resources, srcID, dstID); err != nil {
		return err
	}

	actor := principal(c).Agent
	if err := h.copyTree(ctx, srcID, dstID, depthInfinity, actor); err != nil {
		return err
	}
	if err := h.deleteRecursive(ctx, srcID, actor); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// checkMoveCycle rejects a MOVE whose destination is the source itself or
// lies within the source's own subtree — moving a container there would
// make it its own ancestor once the copy/delete completed. The containment
// tree is walked upward from the destination's parent with a visited set
// guarding against an already-malformed cyclic containment graph, the same
// defensive idiom a dependency-graph cycle check uses against a corrupt
// dependency graph: never trust that the structure being walked is
// well-formed, bound the walk explicitly instead of assuming termination.
func checkMoveCycle(ctx context.Context, store resource.Store, srcID, dstID string) error {
	if dstID == srcID || strings.HasPrefix(dstID, srcID+"/") {
		return trelliserr.New(trelliserr.Conflict, "MOVE destination is the source or one of its descendants")
	}

	visited := make(map[string]bool)
	current := path.Dir(dstID)
	for current != "" && current != "." {
		if current == srcID {
			return trelliserr.New(trelliserr.Conflict, "MOVE destination is inside the source subtree")
		}
		if visited[current] {
			break
		}
		visited[current] = true

		snap, err := store.Get(ctx, current)
		if err != nil {
			return err
		}
		if !snap.Exists() {
			break
		}
		current = snap.Resource.Container
	}
	return nil
}
