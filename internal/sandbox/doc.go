/*
Package sandbox runs untrusted guest code against a document.

# Engines

WebAssembly guests run in a single wazero runtime (WasmEngine). The fastn
host module is instantiated once; the document a call belongs to travels in
the call's context. Compiled modules are cached by content digest. Guests
export main(externref) and optionally call_by_index(i32, externref) -> i32
and call_by_index_ref(i32, externref) -> externref for dynamic closures.

JavaScript guests run in goja (JSRuntime). The script is the entry point: it
calls fastn.* functions and stores closures in the global table array.
Runtimes come from a Pool and are reset when released.

# Sessions

A Session pairs one Instance with one document. Every guest entry is
bracketed by a host frame, so transient values are reclaimed on return.
Trust-boundary faults (stale handles, bad kinds, unknown nodes) trap the
current call and come back as errors; host invariant violations are
re-raised as panics.

# Limits

  - CallTimeout bounds every call (wazero closes the module on deadline,
    goja interrupts the VM)
  - MaxMemoryPages caps WebAssembly linear memory
  - require, process, module and timers are removed from JavaScript
*/
package sandbox
