/*
Package abi exposes a document and its value store to guest code.

# Handles

Guests never see Go pointers. Every store pointer and every node travels as
a Handle: a non-zero uint64 that packs the slot generation, index and a tag
naming the value kind or marking a node. A stale handle fails the liveness
check instead of aliasing a reused slot.

# Imports

Imports is the engine-neutral table of fastn host functions. Each entry
declares its WebAssembly signature and takes raw stack values, so the
wazero and goja sandboxes bind the same table.

# Frames

Host.Enter opens the frame that brackets a guest call and Host.Leave closes
it along with anything the guest left open. A guest may not close the host
frame.
*/
package abi
