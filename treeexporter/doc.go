// Package treeexporter contains an implementation of OpenTelemetry Go's
// SpanExporter interface that prints each trace to the console, or any other
// io.Writer provided, as an indented tree.
//
// Spans are buffered until the root of their trace ends, then the whole trace
// is printed at once, children ordered by start time and interleaved with
// their parent's events. Each line shows the span kind, a name and details
// derived from the HTTP and database semantic conventions when present, the
// status, the duration and a bar placing the span within the trace:
//
//	SE  my-awesome-books.com  GET /authors/:authorId/books/:bookId  500  551ms  ==================
//	  IN  middleware - expressInit                                    0      0  =
//	  IN  middleware - session                                        0  501ms  ================
//	    CL  pg-pool.connect                                           0  300ms  =========
//	    CL  sessions  SELECT sess FROM "session" WHERE sid = $1       0  200ms           ======
//	  IN  middleware - authenticate                                   0      0                 =
//	    user authenticated                                                                     ·
//
// Traces whose root never ends are printed when the exporter shuts down,
// under ORPHANED placeholder roots.
package treeexporter
