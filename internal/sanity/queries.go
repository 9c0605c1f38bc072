package sanity

const termProjection = `{_id, name, slug}`

const mediaProjection = `{
  _id, _type, _createdAt, title, slug, mediaType, image, video, alt, caption,
  "categories": categories[]->` + termProjection + `,
  "tags": tags[]->` + termProjection + `,
  "clients": clients[]->` + termProjection + `,
  autoplay, dateTaken, locationName, camera, lens, focalLength, aperture, shutterSpeed, iso,
  "imageUrl": image.asset->url,
  "imageMeta": {"dimensions": image.asset->metadata.dimensions},
  "videoMeta": {"aspectRatio": video.asset->data.aspect_ratio},
  "muxPlaybackId": video.asset->playbackId
}`

const logProjection = `{_id, _type, title, slug, date, content}`

const (
	listMediaQuery   = `*[_type == "media"] | order(_createdAt desc) ` + mediaProjection
	mediaBySlugQuery = `*[_type == "media" && slug.current == $slug][0] ` + mediaProjection
	listLogsQuery    = `*[_type == "log"] | order(date desc) ` + logProjection
	logBySlugQuery   = `*[_type == "log" && slug.current == $slug][0] ` + logProjection
)
