// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package pqlcontext

import "os"

// trackMemory folds n into the context's high-water mark.
func (c *Context) trackMemory(n int64) {
	if n > c.peak {
		c.peak = n
	}
}

// checkMemCap folds the process's peak RSS so far into the
// high-water mark and, if the result exceeds the configured
// ceiling, invokes the dead-man switch (§5 "a defensive dead-man,
// not flow control"; §7 "Memory cap exceeded — fatal, aborts
// process").
func (c *Context) checkMemCap() {
	c.trackMemory(rssBytes())
	if c.cfg.MemoryCapBytes > 0 && c.peak > c.cfg.MemoryCapBytes {
		c.deadMan()
	}
}

// deadManExit aborts the process. It is a package variable, not
// a hardcoded call, solely so tests can swap it out and observe
// that the cap was hit without actually exiting the test binary.
var deadManExit = func() { os.Exit(1) }

func (c *Context) deadMan() {
	c.logger.Printf("pqlcontext: memory cap exceeded: %d > %d bytes; aborting", c.peak, c.cfg.MemoryCapBytes)
	deadManExit()
}
