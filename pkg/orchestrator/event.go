// Copyright 2024 The OSS Rebuild Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package orchestrator schedules the parallel download of a resolved
// package list, emitting progress events and supporting cooperative
// pause/resume/cancel, per spec.md §4.10.
package orchestrator

import (
	"github.com/airgapcourier/depssmuggler/pkg/courier"
)

// Event is the closed set of events the orchestrator emits to the hosting
// shell, named after their spec.md §6 wire names.
type Event interface {
	eventName() string
}

// StatusEvent reports a phase transition, "download:status".
type StatusEvent struct {
	Phase   string // "resolving" | "downloading"
	Message string
}

func (StatusEvent) eventName() string { return "download:status" }

// DepsResolvedEvent reports the outcome of dependency resolution,
// "download:deps-resolved".
type DepsResolvedEvent struct {
	OriginalPackages []courier.PackageRef
	AllPackages      []courier.ResolvedPackage
	DependencyTrees  []*courier.DependencyNode
	FailedPackages   []courier.FailedRef
}

func (DepsResolvedEvent) eventName() string { return "download:deps-resolved" }

// ProgressStatus is one package's download lifecycle status within
// ProgressEvent.
type ProgressStatus string

const (
	Downloading ProgressStatus = "downloading"
	Completed   ProgressStatus = "completed"
	Failed      ProgressStatus = "failed"
)

// ProgressEvent reports one package's download progress,
// "download:progress".
type ProgressEvent struct {
	PackageID       string
	Status          ProgressStatus
	Progress        int // 0-100, or -1 if TotalBytes is unknown
	DownloadedBytes int64
	TotalBytes      int64
	SpeedBps        float64
}

func (ProgressEvent) eventName() string { return "download:progress" }

// AllCompleteEvent reports the end of the overall run,
// "download:all-complete". It is not emitted if the run was cancelled
// before completion, per spec.md's pause/cancel scenario.
type AllCompleteEvent struct {
	Success    bool
	OutputPath string
}

func (AllCompleteEvent) eventName() string { return "download:all-complete" }

// EventBus is a buffered fan-out of Events to one subscriber, mirroring
// the "abstract bus; one event per name" contract of spec.md §6. A nil
// *EventBus is valid and silently discards every Emit.
type EventBus struct {
	ch chan Event
}

// NewEventBus creates a bus with the given channel capacity so a slow or
// absent subscriber never blocks the orchestrator's hot path.
func NewEventBus(capacity int) *EventBus {
	if capacity <= 0 {
		capacity = 64
	}
	return &EventBus{ch: make(chan Event, capacity)}
}

// Emit publishes an event, dropping it if the bus is at capacity rather
// than blocking the download loop on a slow consumer.
func (b *EventBus) Emit(e Event) {
	if b == nil {
		return
	}
	select {
	case b.ch <- e:
	default:
	}
}

// Events returns the subscriber-facing read side of the bus.
func (b *EventBus) Events() <-chan Event {
	if b == nil {
		return nil
	}
	return b.ch
}

// Close shuts down the bus. Callers must stop calling Emit before Close.
func (b *EventBus) Close() {
	if b == nil {
		return
	}
	close(b.ch)
}
