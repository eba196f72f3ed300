/*
 * streamfed is a media-aggregation gateway that federates IPTV providers
 * and the TMDB catalog into a single normalized inventory.
 * Copyright (C) 2026  The streamfed authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned for resource-specific lookups that match nothing.
var ErrNotFound = errors.New("not found")

// ErrAlreadyRunning is returned by the scheduler when a job with the same
// name is already in flight. Surfaced as HTTP 409 by the edge.
var ErrAlreadyRunning = errors.New("job already running")

// ConfigurationError marks missing or invalid configuration (unset TMDB
// key, missing provider secrets). Never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// UpstreamTransientError marks a retriable upstream failure: timeout, 5xx,
// DNS, connection refused. Ingestion skips the single title; probing treats
// the URL as unreachable.
type UpstreamTransientError struct {
	Op  string
	Err error
}

func (e *UpstreamTransientError) Error() string {
	return fmt.Sprintf("upstream transient failure during %s: %v", e.Op, e.Err)
}

func (e *UpstreamTransientError) Unwrap() error { return e.Err }

// UpstreamPermanentError marks a non-retriable upstream failure: 4xx,
// malformed body, missing required payload fields. A single title is marked
// ignored; a whole type is aborted.
type UpstreamPermanentError struct {
	Op     string
	Detail string
}

func (e *UpstreamPermanentError) Error() string {
	return fmt.Sprintf("upstream permanent failure during %s: %s", e.Op, e.Detail)
}

// IsUpstreamPermanent reports whether err is an UpstreamPermanentError.
func IsUpstreamPermanent(err error) bool {
	var pe *UpstreamPermanentError
	return errors.As(err, &pe)
}

// IsUpstreamTransient reports whether err is an UpstreamTransientError.
func IsUpstreamTransient(err error) bool {
	var te *UpstreamTransientError
	return errors.As(err, &te)
}

// BlockedError is returned by the scheduler when a job cannot start because
// one of its skipIfOtherInProgress dependencies is running.
type BlockedError struct {
	Job          string
	BlockingJobs []string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("job %s cannot run, blocked by: %s", e.Job, strings.Join(e.BlockingJobs, ", "))
}

// IsBlocked reports whether err is a BlockedError.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}

// StorageError marks a document-store failure. Reads return safe defaults;
// writes bubble this up so the caller can retry on the next run.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
