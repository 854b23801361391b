// SPDX-License-Identifier: MPL-2.0

// Package issue provides structured, user-facing error reporting for convoy.
//
// ActionableError carries the failed operation, the resource involved, and
// concrete suggestions; the ErrorContext builder constructs them fluently.
// The issue catalog maps the recurring pipeline failure classes (unknown
// module, missing capability, exhausted retries, ...) to rendered markdown
// guidance shown below the error message.
package issue
