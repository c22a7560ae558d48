// Package testutil contains helper builders and stubs used across tests to
// reduce boilerplate when constructing memories and driving generation
// without a real model provider. They are not intended for production usage.
package testutil
