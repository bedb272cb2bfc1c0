/*
Package provider defines the object store a site is published into.

	            +-------------+
	            |  Provider   |
	            |   (Store)   |
	            +------+------+
	                   |
	      +------------+------------+
	      |                         |
	+-----+-----+            +------+-----+
	|  bucket   |            |  emulator  |
	| (S3 API)  |            |  (bbolt)   |
	+-----------+            +------------+

🎯 Purpose:
- Uploads objects with their content type, encoding and cache headers
- Lists objects with the md5 of their stored bytes
- Reads and deletes objects, decoding gzip transparently
- Toggles anonymous read access

🔄 Flow:
1. Backends register a Factory from init()
2. Open picks "emulator" when HOIST_EMULATE is set, "bucket" otherwise
3. Init provisions the container, idempotently

🤝 Backends:
- bucket: any S3 compatible endpoint (GCS interoperability by default)
- emulator: a local bbolt database, used for HOIST_EMULATE and tests
- providertest: an in-memory store and a testify mock

🔍 Example:

	p, err := provider.Open(ctx, cfg)
	if err != nil {
		return err
	}
	obj, err := p.Upload(ctx, buf, "index", provider.Headers{
		ContentType:  "text/html; charset=utf-8",
		CacheControl: "public,max-age=0",
	})
*/
package provider
