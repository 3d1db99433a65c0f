// Copyright (c) 2014 Utkan Güngördü <utkan@freeconsole.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cuckoo

import kitlog "github.com/go-kit/log"

// Logger is the diagnostic hook the table uses for low-frequency
// structural events (completed resizes, automatic-expansion refusals,
// BFS exhaustion); a resize is logged once, when it finishes, not when
// it starts. It is exactly github.com/go-kit/log's
// Logger interface, so any go-kit logger (or an adapter to zap,
// logrus, etc.) can be passed to WithLogger directly.
type Logger = kitlog.Logger

type nopLogger struct{}

func (nopLogger) Log(...interface{}) error { return nil }

// NewNopLogger returns a Logger that discards everything, the default
// for tables constructed without WithLogger.
func NewNopLogger() Logger { return kitlog.NewNopLogger() }
