// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

/*
Package shard holds the shard table and the slot resolver.

A slot is an account identifier of the form A<integer> (case-insensitive).
Each shard owns a numeric slot range served by one worker process. Either
bound may be absent, meaning unbounded on that side.

Resolution is first-match-wins in table order. Overlapping ranges are not
rejected; Table.Overlaps reports them so startup can warn.

	table, err := shard.NewTable([]shard.Spec{
	    {ID: "w1", Port: 3101, From: "A1", To: "A50"},
	    {ID: "w2", Port: 3102, From: "A51", To: "A100"},
	})
	d, ok := table.Resolve("A37") // w1

Slots are extracted from requests by SlotFromPath (/api/accounts/<slot>/...)
and SlotFromBody (slot, boundSlot, role.boundSlot).
*/
package shard
