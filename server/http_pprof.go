/******************************************************************************
 *
 *  Description :
 *
 *  Runtime profiles over HTTP. The root of the configured path lists the
 *  available profiles, <path>/<name> returns one of them. The optional
 *  'debug' query parameter selects the output format as in
 *  runtime/pprof.Profile.WriteTo; debug=0 is the binary protobuf form.
 *
 *****************************************************************************/

package main

import (
	"fmt"
	"net/http"
	"path"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Text format with symbolized stacks.
const defaultProfileDebug = 1

// profiler serves runtime profiles under root.
type profiler struct {
	root string
	log  *zap.Logger
}

// servePprof registers the profiler at serveAt unless it is empty or "-".
func servePprof(mux *http.ServeMux, serveAt string, log *zap.Logger) {
	if serveAt == "" || serveAt == "-" {
		return
	}

	p := &profiler{root: path.Clean("/"+serveAt) + "/", log: log}
	mux.Handle(p.root, p)
	log.Info("pprof: profiling info exposed", zap.String("path", p.root))
}

func (p *profiler) ServeHTTP(wrt http.ResponseWriter, req *http.Request) {
	wrt.Header().Set("X-Content-Type-Options", "nosniff")

	name := strings.TrimPrefix(req.URL.Path, p.root)
	if name == "" {
		p.index(wrt)
		return
	}

	profile := pprof.Lookup(name)
	if profile == nil {
		http.Error(wrt, fmt.Sprintf("unknown profile %q", name), http.StatusNotFound)
		return
	}

	debug := defaultProfileDebug
	if val := req.URL.Query().Get("debug"); val != "" {
		var err error
		if debug, err = strconv.Atoi(val); err != nil || debug < 0 {
			http.Error(wrt, fmt.Sprintf("invalid debug value %q", val), http.StatusBadRequest)
			return
		}
	}

	if debug == 0 {
		wrt.Header().Set("Content-Type", "application/octet-stream")
		wrt.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".pb.gz"))
	} else {
		wrt.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	if err := profile.WriteTo(wrt, debug); err != nil {
		// Headers are already sent.
		p.log.Warn("pprof: failed to write profile", zap.String("profile", name), zap.Error(err))
	}
}

// index lists profile names with their sample counts, one per line.
func (p *profiler) index(wrt http.ResponseWriter) {
	profiles := pprof.Profiles()
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name() < profiles[j].Name() })

	wrt.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, prof := range profiles {
		fmt.Fprintf(wrt, "%s\t%d\t%s%s\n", prof.Name(), prof.Count(), p.root, prof.Name())
	}
}
