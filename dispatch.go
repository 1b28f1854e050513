/*
 * gigjson, (C) 2021 The gigjson Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package gigjson

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/klauspost/cpuid/v2"
)

// implementation bundles the stage 1 kernels of one backend. Higher layers
// call only through these function pointers; everything else is written once.
//
// All backends in this tree are portable Go. The tiered names exist so that
// CPU probing, preference ordering and user overrides behave the same once
// hand-tuned kernels are attached to a tier, and so that the chosen tier is
// visible in diagnostics.
type implementation struct {
	name string

	// supported reports whether the host can run this backend.
	supported func() bool

	// buildMasks classifies one 64-byte block into bitmasks.
	buildMasks func(chunk *[blockSize]byte, m *blockMasks)

	// flatten appends the absolute offset of every set bit in mask.
	flatten func(dst []uint32, base uint32, mask uint64) []uint32
}

// blockMasks holds the per-block classification bitmasks, LSB = first byte.
type blockMasks struct {
	backslash  uint64 // byte == '\\'
	rawQuote   uint64 // byte == '"', before escape filtering
	whitespace uint64 // SP, HT, LF, CR
	op         uint64 // one of { } [ ] , :
	ctrl       uint64 // byte < 0x20
	nonASCII   uint64 // byte >= 0x80
}

var (
	swar64 = &implementation{
		name:       "swar64",
		supported:  func() bool { return true },
		buildMasks: buildMasksSWAR,
		flatten:    flattenBitsUnrolled,
	}
	fallback = &implementation{
		name:       "fallback",
		supported:  func() bool { return true },
		buildMasks: buildMasksGeneric,
		flatten:    flattenBitsGeneric,
	}
)

// implementations lists the selectable backends best-first for this
// architecture. The portable kernels are shared between tiers; the probe
// decides which tier the host lands on.
func implementations() []*implementation {
	switch runtime.GOARCH {
	case "amd64":
		return []*implementation{
			{name: "avx512", supported: hasAVX512, buildMasks: buildMasksSWAR, flatten: flattenBitsUnrolled},
			{name: "avx2", supported: hasAVX2, buildMasks: buildMasksSWAR, flatten: flattenBitsUnrolled},
			{name: "sse42", supported: hasSSE42, buildMasks: buildMasksSWAR, flatten: flattenBitsUnrolled},
			fallback,
		}
	case "arm64":
		// NEON is mandatory on arm64.
		return []*implementation{
			{name: "neon", supported: func() bool { return true }, buildMasks: buildMasksSWAR, flatten: flattenBitsUnrolled},
			fallback,
		}
	case "ppc64le":
		return []*implementation{
			{name: "altivec", supported: func() bool { return true }, buildMasks: buildMasksSWAR, flatten: flattenBitsUnrolled},
			fallback,
		}
	default:
		return []*implementation{swar64, fallback}
	}
}

func hasAVX512() bool {
	return cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ, cpuid.AVX512CD,
		cpuid.AVX512BW, cpuid.AVX512VL, cpuid.BMI1, cpuid.BMI2, cpuid.CLMUL)
}

func hasAVX2() bool {
	return cpuid.CPU.Supports(cpuid.AVX2, cpuid.BMI1, cpuid.BMI2, cpuid.CLMUL)
}

func hasSSE42() bool {
	return cpuid.CPU.Supports(cpuid.SSE42, cpuid.CLMUL)
}

// implAliases maps the CPU code names accepted as overrides to tier names.
var implAliases = map[string]string{
	"icelake":  "avx512",
	"haswell":  "avx2",
	"westmere": "sse42",
	"generic":  "fallback",
}

var (
	activeImpl   atomic.Pointer[implementation]
	activeSelect sync.Once
)

// activeImplementation returns the process-wide backend, probing CPU
// features on first use. Repeated initialization is idempotent.
func activeImplementation() *implementation {
	if impl := activeImpl.Load(); impl != nil {
		return impl
	}
	activeSelect.Do(func() {
		for _, impl := range implementations() {
			if impl.supported() {
				// Keep an explicit SetImplementation that raced ahead of us.
				activeImpl.CompareAndSwap(nil, impl)
				return
			}
		}
		activeImpl.CompareAndSwap(nil, fallback)
	})
	return activeImpl.Load()
}

// Implementation returns the name of the active backend.
func Implementation() string {
	return activeImplementation().name
}

// Implementations returns the names of all backends usable on this host.
func Implementations() []string {
	var names []string
	for _, impl := range implementations() {
		if impl.supported() {
			names = append(names, impl.name)
		}
	}
	sort.Strings(names)
	return names
}

// implementationByName resolves a backend by tier name ("avx2",
// "fallback") or CPU code name ("haswell", "westmere"), checking that the
// host supports it.
func implementationByName(name string) (*implementation, error) {
	if alias, ok := implAliases[name]; ok {
		name = alias
	}
	for _, impl := range implementations() {
		if impl.name != name {
			continue
		}
		if !impl.supported() {
			return nil, fmt.Errorf("implementation %q not supported on this CPU", name)
		}
		return impl, nil
	}
	return nil, fmt.Errorf("unknown implementation %q", name)
}

// SetImplementation overrides the process-wide active backend by name.
// Parsers pinned with WithImplementation are unaffected.
func SetImplementation(name string) error {
	impl, err := implementationByName(name)
	if err != nil {
		return err
	}
	activeImpl.Store(impl)
	return nil
}

// SupportedCPU will return whether the CPU is supported. The portable
// kernels run everywhere, so this is always true; it is kept for callers
// that gate on it before feeding large inputs.
func SupportedCPU() bool {
	return activeImplementation() != nil
}
