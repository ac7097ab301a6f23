package main

import (
	"net/http"
	"os"
	"strconv"

	pz "github.com/weberc2/httpeasy"

	"github.com/weberc2/blockfs/pkg/types"
)

// serve exposes cache statistics and inode contents over HTTP for
// diagnostics.
func serve(addr string, e *engine) error {
	return http.ListenAndServe(addr, pz.Register(
		pz.JSONLog(os.Stderr),
		pz.Route{
			Method:  "GET",
			Path:    "/stats",
			Handler: statsHandler(e),
		},
		pz.Route{
			Method:  "GET",
			Path:    "/inodes/{sector}",
			Handler: inodeHandler(e),
		},
	))
}

func statsHandler(e *engine) pz.Handler {
	return func(r pz.Request) pz.Response {
		return pz.Ok(pz.JSON(struct {
			Hits   uint64 `json:"hits"`
			Misses uint64 `json:"misses"`
		}{
			Hits:   e.cache.HitCount(),
			Misses: e.cache.MissCount(),
		}))
	}
}

func inodeHandler(e *engine) pz.Handler {
	return func(r pz.Request) pz.Response {
		sector, err := strconv.ParseUint(r.Vars["sector"], 10, 32)
		if err != nil {
			return pz.BadRequest(
				pz.Stringf("parsing sector `%s`: %v", r.Vars["sector"], err),
				struct{ Error string }{err.Error()},
			)
		}

		h := e.table.Open(types.Sector(sector))
		defer e.table.Close(h)

		length, err := e.table.Length(h)
		if err != nil {
			return pz.NotFound(
				pz.Stringf("loading inode `%d`: %v", sector, err),
				struct{ Error string }{err.Error()},
			)
		}

		buf := make([]byte, length)
		if _, err := e.table.ReadAt(h, buf, 0); err != nil {
			return pz.InternalServerError(
				struct{ Error string }{err.Error()},
			)
		}
		return pz.Ok(pz.String(string(buf)))
	}
}
