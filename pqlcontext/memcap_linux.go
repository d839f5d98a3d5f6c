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

//go:build linux

package pqlcontext

import "golang.org/x/sys/unix"

// rssBytes reports the process's peak resident set size so far
// (ru_maxrss) via getrusage, the same /proc-free approach the teacher reserves
// for Linux-specific memory inspection (mirroring meminfo.go's
// GOOS=="linux" gate, upgraded here to a real syscall since
// golang.org/x/sys is already a direct dependency).
func rssBytes() int64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	// ru_maxrss is in KB on Linux.
	return ru.Maxrss * 1024
}
