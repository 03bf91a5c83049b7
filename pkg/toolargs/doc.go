// Package toolargs models tool call arguments produced by a model as tagged values
// (null, boolean, number, string, array, object), with order-preserving JSON parsing,
// canonical encoding for de-duplication and validation against a declared parameter schema.
package toolargs
