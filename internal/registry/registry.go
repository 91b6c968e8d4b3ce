// Copyright (C) 2025 Mera Learn (progress-core@mera-learn.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package registry models the Curriculum Registry external collaborator
// (§6): the source-of-truth set of lesson/domain/component/entity ids that
// Progress Integrity reconciles stored Bundles against. The rendering
// engine that actually owns lesson content is out of scope (§1); this
// package only carries the shape Integrity needs.
package registry

import "github.com/mera-learn/progress-core/internal/progress"

// ComponentTypeHandlers is the per-component-type table the spec's §9
// design note calls for in place of dynamic dispatch: three handler funcs
// per type, stored in one map keyed by type tag, instead of an inheritance
// hierarchy.
type ComponentTypeHandlers struct {
	// ValidateSchema reports whether raw is a structurally valid progress
	// payload for this component type (condition (b) of §4.5 phase 2e).
	ValidateSchema func(raw progress.ComponentProgress) bool

	// ValidateAgainstConfig reports whether raw is consistent with the
	// parsed lesson config for the owning lesson (condition (c), optional:
	// a handler may leave this nil to skip the check).
	ValidateAgainstConfig func(raw progress.ComponentProgress, lessonConfig any) bool

	// Default returns the type's default progress payload, used to
	// initialize missing components (I5) and to replace ones that fail
	// validation.
	Default func() progress.ComponentProgress
}

// Registry is the read-only query contract Progress Integrity consumes
// (§6). A concrete implementation is normally generated from the lesson
// authoring pipeline; this package only describes the shape.
type Registry interface {
	HasLesson(id int) bool
	HasDomain(id int) bool
	HasEntity(id int) bool
	GetEntityPageCount(id int) (int, bool)
	HasComponent(id int) bool
	GetComponentType(id int) (string, bool)
	GetLessonIDForComponent(id int) (int, bool)

	GetAllComponentIDs() []int
	GetAllLessonIDs() []int
	GetAllDomainIDs() []int

	// Handlers returns the ComponentTypeHandlers registered for typeTag,
	// or ok==false if the type is unknown.
	Handlers(typeTag string) (ComponentTypeHandlers, bool)

	// LessonConfig returns the parsed lesson configuration for lessonID,
	// used only by ValidateAgainstConfig. ok==false means no config is
	// available (structural cross-check is then skipped).
	LessonConfig(lessonID int) (any, bool)
}

// Static is a simple in-memory Registry backed by plain maps, suitable for
// tests and for small deployments that load their curriculum from a single
// config file rather than a database.
type Static struct {
	Lessons    map[int]bool
	Domains    map[int]bool
	Entities   map[int]int // entityID -> page count
	Components map[int]string
	LessonOf   map[int]int // componentID -> lessonID
	Types      map[string]ComponentTypeHandlers
	Configs    map[int]any
}

// NewStatic returns an empty Static registry ready to be populated.
func NewStatic() *Static {
	return &Static{
		Lessons:    map[int]bool{},
		Domains:    map[int]bool{},
		Entities:   map[int]int{},
		Components: map[int]string{},
		LessonOf:   map[int]int{},
		Types:      map[string]ComponentTypeHandlers{},
		Configs:    map[int]any{},
	}
}

func (s *Static) HasLesson(id int) bool { return s.Lessons[id] }
func (s *Static) HasDomain(id int) bool { return s.Domains[id] }
func (s *Static) HasEntity(id int) bool { _, ok := s.Entities[id]; return ok }

func (s *Static) GetEntityPageCount(id int) (int, bool) {
	n, ok := s.Entities[id]
	return n, ok
}

func (s *Static) HasComponent(id int) bool { _, ok := s.Components[id]; return ok }

func (s *Static) GetComponentType(id int) (string, bool) {
	t, ok := s.Components[id]
	return t, ok
}

func (s *Static) GetLessonIDForComponent(id int) (int, bool) {
	l, ok := s.LessonOf[id]
	return l, ok
}

func (s *Static) GetAllComponentIDs() []int {
	ids := make([]int, 0, len(s.Components))
	for id := range s.Components {
		ids = append(ids, id)
	}
	return ids
}

func (s *Static) GetAllLessonIDs() []int {
	ids := make([]int, 0, len(s.Lessons))
	for id := range s.Lessons {
		ids = append(ids, id)
	}
	return ids
}

func (s *Static) GetAllDomainIDs() []int {
	ids := make([]int, 0, len(s.Domains))
	for id := range s.Domains {
		ids = append(ids, id)
	}
	return ids
}

func (s *Static) Handlers(typeTag string) (ComponentTypeHandlers, bool) {
	h, ok := s.Types[typeTag]
	return h, ok
}

func (s *Static) LessonConfig(lessonID int) (any, bool) {
	c, ok := s.Configs[lessonID]
	return c, ok
}

var _ Registry = (*Static)(nil)
