// Package document hosts guests as documents.
//
// Each document pairs one store, one tree and one guest session. The manager
// creates a document by loading the guest into the engine its payload was
// classified for and running main; it closes a document by clearing the tree
// and checking that the store holds nothing afterwards.
package document
