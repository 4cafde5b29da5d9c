package catalog

import "socialsync/internal/core/record"

// Field sets for the Instagram scraper datasets. Alias lists carry the names the
// dataset has used across versions, newest first

func str(name string, aliases ...string) FieldSpec {
	return FieldSpec{Name: name, Type: TypeString, Aliases: withSelf(name, aliases)}
}

func num(name string, aliases ...string) FieldSpec {
	return FieldSpec{Name: name, Type: TypeInteger, Aliases: withSelf(name, aliases)}
}

func withSelf(name string, aliases []string) []string {
	if len(aliases) == 0 {
		return []string{name}
	}
	return aliases
}

func required(f FieldSpec) FieldSpec {
	f.Required = true
	return f
}

func typed(f FieldSpec, t Type) FieldSpec {
	f.Type = t
	return f
}

func defaulted(f FieldSpec, v any) FieldSpec {
	f.Default = v
	return f
}

// Profile is the account-level record. The numeric id is the natural key; usernames can change
func Profile() Schema {
	return Schema{
		Kind:     record.KindProfile,
		KeyField: "id",
		Fields: []FieldSpec{
			required(str("id", "id", "pk", "profileId")),
			required(str("username", "username", "ownerUsername")),
			str("fullName", "fullName", "full_name"),
			str("biography", "biography", "bio"),
			str("externalUrl", "externalUrl", "external_url"),
			str("url"),
			required(num("followersCount", "followersCount", "followers_count", "edge_followed_by.count")),
			num("followsCount", "followsCount", "followingCount", "edge_follow.count"),
			num("postsCount", "postsCount", "edge_owner_to_timeline_media.count"),
			num("highlightReelCount", "highlightReelCount", "highlight_reel_count"),
			num("igtvVideoCount", "igtvVideoCount"),
			typed(str("isBusinessAccount", "isBusinessAccount", "is_business_account"), TypeBoolean),
			str("businessCategoryName", "businessCategoryName", "category_name"),
			typed(str("private", "private", "isPrivate", "is_private"), TypeBoolean),
			typed(str("verified", "verified", "isVerified", "is_verified"), TypeBoolean),
			str("profilePicUrl", "profilePicUrlHD", "profilePicUrl", "profile_pic_url"),
			defaulted(typed(str("relatedProfiles"), TypeNested), []any{}),
		},
		Children: []Child{{
			Alias:  "latestPosts",
			Kind:   record.KindPost,
			Inject: map[string]string{"ownerUsername": "username", "ownerId": "id"},
		}},
	}
}

// Post is a feed item: single image, video or carousel (Sidecar)
func Post() Schema {
	return Schema{
		Kind:     record.KindPost,
		KeyField: "shortCode",
		Fields: []FieldSpec{
			required(str("id", "id", "pk")),
			required(str("shortCode", "shortCode", "shortcode", "code")),
			required(str("type", "type", "__typename")),
			str("url"),
			defaulted(str("caption"), ""),
			defaulted(num("likesCount", "likesCount", "like_count", "edge_liked_by.count"), int64(0)),
			defaulted(num("commentsCount", "commentsCount", "comment_count", "edge_media_to_comment.count"), int64(0)),
			typed(str("timestamp", "timestamp", "takenAt"), TypeTimestamp),
			str("ownerUsername", "ownerUsername", "owner.username"),
			str("ownerId", "ownerId", "owner.id"),
			str("ownerFullName", "ownerFullName", "owner.full_name"),
			str("displayUrl", "displayUrl", "display_url"),
			str("videoUrl", "videoUrl", "video_url"),
			num("videoViewCount", "videoViewCount", "video_view_count"),
			num("videoPlayCount", "videoPlayCount", "video_play_count"),
			typed(str("videoDuration", "videoDuration", "video_duration"), TypeDecimal),
			str("locationName", "locationName", "location.name"),
			str("locationId", "locationId", "location.id"),
			num("dimensionsHeight", "dimensionsHeight", "dimensions.height"),
			num("dimensionsWidth", "dimensionsWidth", "dimensions.width"),
			typed(str("isSponsored", "isSponsored", "is_paid_partnership"), TypeBoolean),
			str("productType", "productType", "product_type"),
			str("alt", "alt", "accessibility_caption"),
			str("firstComment"),
			defaulted(typed(str("hashtags"), TypeNested), []any{}),
			defaulted(typed(str("mentions"), TypeNested), []any{}),
			defaulted(typed(str("childPosts", "childPosts", "sidecarChildren"), TypeNested), []any{}),
			typed(str("musicInfo", "musicInfo", "music_info"), TypeNested),
		},
		Children: []Child{{
			Alias:  "latestComments",
			Kind:   record.KindComment,
			Inject: map[string]string{"postId": "shortCode", "postUrl": "url"},
		}},
	}
}

// Comment is a comment on a post, either from a comments dataset or embedded in a post
func Comment() Schema {
	return Schema{
		Kind:     record.KindComment,
		KeyField: "id",
		Fields: []FieldSpec{
			required(str("id", "id", "pk")),
			required(str("postId", "postId", "postShortCode", "media_code")),
			required(str("text", "text", "content")),
			str("postUrl"),
			str("ownerUsername", "ownerUsername", "owner.username"),
			str("ownerId", "ownerId", "owner.id"),
			str("ownerProfilePicUrl", "ownerProfilePicUrl", "owner.profile_pic_url"),
			typed(str("timestamp", "timestamp", "createdAt"), TypeTimestamp),
			defaulted(num("likesCount", "likesCount", "comment_like_count"), int64(0)),
			defaulted(num("repliesCount", "repliesCount", "child_comment_count"), int64(0)),
			defaulted(typed(str("replies"), TypeNested), []any{}),
		},
	}
}
