package detect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

// moduleServer serves fixed bodies and counts requests per kind
type moduleServer struct {
	*httptest.Server
	ranged  atomic.Int32
	full    atomic.Int32
	queries []string
	mu      sync.Mutex
}

func newModuleServer(t *testing.T, bodies map[string]string, honorRange bool) *moduleServer {
	t.Helper()
	ms := &moduleServer{}
	ms.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ms.mu.Lock()
		ms.queries = append(ms.queries, r.URL.RawQuery)
		ms.mu.Unlock()

		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Range") != "" {
			ms.ranged.Add(1)
		} else {
			ms.full.Add(1)
		}
		if honorRange {
			http.ServeContent(w, r, "module.js", time.Time{}, strings.NewReader(body))
			return
		}
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ms.Close)
	return ms
}

func newDetector(env types.Env) *Detector {
	return New(Options{Env: env, PartialTimeout: time.Second, FullTimeout: time.Second})
}

func TestClassifyPrefix(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want types.ModuleFormat
	}{
		{"bare register", `System.register(["dep"], function (_export) {})`, types.FormatLegacyRegistration},
		{"after comments", "/* banner */\n// line\nSystem.register([], function(){})", types.FormatLegacyRegistration},
		{"after directive", `"use strict";System.register([],function(){})`, types.FormatLegacyRegistration},
		{"register later in file", `var x = 1; System.register([], function(){})`, types.FormatUnknown},
		{"umd", `(function (root, factory) { if (typeof exports === 'object') {} else if (typeof define === 'function' && define.amd) {} })`, types.FormatGlobalScript},
		{"partial umd", `if (typeof exports === 'object') {}`, types.FormatUnknown},
		{"esm is inconclusive on prefix", `import { a } from "./a.js";`, types.FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPrefix(tt.src))
		})
	}
}

func TestClassifyFull(t *testing.T) {
	padding := strings.Repeat("var filler = 1;\n", 2000)

	tests := []struct {
		name string
		src  string
		want types.ModuleFormat
	}{
		{"leading import", `import{h as r}from"./vendor.js";r()`, types.FormatNative},
		{"leading export after comment", "// @license MIT\nexport default function mount() {}", types.FormatNative},
		{"export list in tail", padding + `var a=1;export{a as mount};`, types.FormatNative},
		{"module line in body", "var a = 1;\nexport const mount = () => {};\n" + padding, types.FormatNative},
		{"legacy beats esm", `System.register([],function(e){e("x",1)});export{}`, types.FormatLegacyRegistration},
		{"plain script", padding, types.FormatUnknown},
		{"identifier containing export", `var reexport = 1; var important = 2;`, types.FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFull(tt.src))
		})
	}
}

func TestDetectLegacyPrefixNeedsNoExtraRequest(t *testing.T) {
	body := "System.register([], function (_export) { return { execute: function () {} } });\n" +
		strings.Repeat("// padding\n", 2000)
	srv := newModuleServer(t, map[string]string{"/legacy.js": body}, true)
	d := newDetector(types.EnvProduction)

	assert.Equal(t, types.FormatLegacyRegistration, d.Detect(context.Background(), srv.URL+"/legacy.js"))
	assert.Equal(t, int32(1), srv.ranged.Load())
	assert.Equal(t, int32(0), srv.full.Load())
}

func TestDetectExportTailNeedsOneFullFetch(t *testing.T) {
	body := strings.Repeat("var filler = 1;\n", 2000) + "const mount=()=>{};export{mount};"
	srv := newModuleServer(t, map[string]string{"/esm.js": body}, true)
	d := newDetector(types.EnvProduction)

	assert.Equal(t, types.FormatNative, d.Detect(context.Background(), srv.URL+"/esm.js"))
	assert.Equal(t, int32(1), srv.ranged.Load())
	assert.Equal(t, int32(1), srv.full.Load())
}

func TestDetectRangeIgnoredUsesBodyDirectly(t *testing.T) {
	body := strings.Repeat("var filler = 1;\n", 2000) + "export{mount};"
	srv := newModuleServer(t, map[string]string{"/esm.js": body}, false)
	d := newDetector(types.EnvProduction)

	assert.Equal(t, types.FormatNative, d.Detect(context.Background(), srv.URL+"/esm.js"))
	assert.Equal(t, int32(1), srv.ranged.Load())
	assert.Equal(t, int32(0), srv.full.Load())
}

func TestDetectIsMemoized(t *testing.T) {
	srv := newModuleServer(t, map[string]string{
		"/umd.js": `(function(){ typeof exports; typeof define; define.amd })()`,
	}, true)
	d := newDetector(types.EnvProduction)
	url := srv.URL + "/umd.js"

	var wg sync.WaitGroup
	results := make([]types.ModuleFormat, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = d.Detect(context.Background(), url)
		}(i)
	}
	wg.Wait()

	for _, f := range results {
		assert.Equal(t, types.FormatGlobalScript, f)
	}
	assert.Equal(t, types.FormatGlobalScript, d.Detect(context.Background(), url))
	assert.Equal(t, int32(1), srv.ranged.Load()+srv.full.Load())

	cached, ok := d.Cached(url)
	require.True(t, ok)
	assert.Equal(t, types.FormatGlobalScript, cached)
}

func TestDetectFailuresAreUnknown(t *testing.T) {
	srv := newModuleServer(t, map[string]string{
		"/index.html": "<!DOCTYPE html><html><head></head><body><div id=root></div></body></html>",
	}, false)
	d := newDetector(types.EnvProduction)

	assert.Equal(t, types.FormatUnknown, d.Detect(context.Background(), srv.URL+"/missing.js"))
	assert.Equal(t, types.FormatUnknown, d.Detect(context.Background(), srv.URL+"/index.html"))
	assert.Equal(t, types.FormatUnknown, d.Detect(context.Background(), "http://127.0.0.1:1/unreachable.js"))
}

func TestDetectTimeoutIsUnknown(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	d := New(Options{Env: types.EnvProduction, PartialTimeout: 50 * time.Millisecond})
	assert.Equal(t, types.FormatUnknown, d.Detect(context.Background(), srv.URL+"/slow.js"))
}

func TestDetectLocalModeBustsCache(t *testing.T) {
	srv := newModuleServer(t, map[string]string{"/app.js": `System.register([],function(){})`}, true)
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))
	d := New(Options{Env: types.EnvLocal, Clock: clock})

	assert.Equal(t, types.FormatLegacyRegistration, d.Detect(context.Background(), srv.URL+"/app.js"))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.queries, 1)
	assert.Equal(t, "t=1700000000000", srv.queries[0])
}

func TestDetectSharedDetectionOutlivesCancelledCaller(t *testing.T) {
	arrived := make(chan struct{}, 1)
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		arrived <- struct{}{}
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "application/javascript")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte(`System.register([], function () {})`))
	}))
	defer srv.Close()

	d := New(Options{Env: types.EnvProduction, PartialTimeout: 2 * time.Second})
	url := srv.URL + "/shared.js"

	impatient, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	first := make(chan types.ModuleFormat, 1)
	go func() { first <- d.Detect(impatient, url) }()

	<-arrived
	second := d.Detect(context.Background(), url)

	assert.Equal(t, types.FormatUnknown, <-first)
	assert.Equal(t, types.FormatLegacyRegistration, second)
	assert.Equal(t, int32(1), requests.Load())

	f, ok := d.Cached(url)
	require.True(t, ok)
	assert.Equal(t, types.FormatLegacyRegistration, f)
}
