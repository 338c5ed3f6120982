// Package tools defines the tool catalog for the Baseline MCP gateway.
//
// # Overview
//
// Every tool fronts exactly one Baseline loan-servicing API operation:
// the handler validates and sanitizes its arguments, issues a single
// upstream HTTP call, and wraps the response as pretty-printed JSON in
// a text content block. Failures of any kind (validation, sanitization,
// upstream HTTP errors) are normalized into a Result with IsError set;
// handlers never return a Go error to the transport.
//
// # Catalog
//
// Three resource families are registered at startup:
//
//   - loans: getLoan, listLoans, createLoan, updateLoan, getLoanLedger
//   - tasks: getTask, listTasks, createTask, updateTask, deleteTask
//   - parties: create/list/get/update/delete/connect/disconnect for
//     borrowers, vendors, and investors
//
// Borrowers, vendors, and investors share identical shapes, so their 21
// tools are generated from a single parametrized party family rather
// than hand-written per resource.
//
// # Annotations
//
// Descriptors carry MCP tool annotations communicating side-effect
// class to calling agents: get/list tools are read-only and idempotent,
// delete tools are destructive and idempotent, and create/update/
// connect/disconnect tools are neither.
package tools
