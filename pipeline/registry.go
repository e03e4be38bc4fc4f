/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pipeline

import "fmt"

// Factory builds one named processor instance.
type Factory func() (Processor, error)

// Registry maps configured processor-app identifiers (spec.md §6,
// "pipeline_apps (ordered list of processor identifiers)") to
// factories, and validates the configured list resolves completely
// before the pipeline starts (SPEC_FULL.md §9, item 3: "Pipeline app
// ordering validation at construction" - the source's PipelineApp
// metaclass registry validates names eagerly rather than failing with
// a nil-pointer panic once the event loop is already running).
type Registry struct {
	factories map[string]Factory
}

// NewRegistry constructs an empty processor registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a named processor factory.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Build resolves an ordered list of app names into processor instances,
// failing fast with a configuration error if any name is unregistered
// (spec.md §6, exit code 3: "configuration error").
func (r *Registry) Build(names []string) ([]Processor, error) {
	apps := make([]Processor, 0, len(names))
	for _, name := range names {
		f, ok := r.factories[name]
		if !ok {
			return nil, fmt.Errorf("pipeline: unregistered processor app %q", name)
		}
		p, err := f()
		if err != nil {
			return nil, fmt.Errorf("pipeline: build processor app %q: %w", name, err)
		}
		apps = append(apps, p)
	}
	return apps, nil
}
