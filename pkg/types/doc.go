// Package types defines the content repository, link index, field handler and
// audit interfaces, the Item, Field and Link entities, job status records, and
// the standard error values shared by the breaklinks packages.
package types
