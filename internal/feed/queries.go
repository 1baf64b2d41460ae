package feed

import "strings"

const (
	authorProjection   = "createdBy.{id, username, displayName, avatarImageId} AS createdBy"
	reactionsSubquery  = "(SELECT id, kind, in.{username} AS reactedBy FROM <-reacted) AS reactions"
	cursorPredicate    = `($isInitial OR id < type::thing($table, $lastId))`
	createdByPredicate = "createdBy.username = $createdBy"
)

func pageQuery(table string, fields []string, filter Filter) string {
	where := []string{cursorPredicate}
	if filter.CreatedBy != "" {
		where = append(where, createdByPredicate)
	}

	return "SELECT " + strings.Join(fields, ", ") +
		" FROM " + table +
		" WHERE " + strings.Join(where, " AND ") +
		" ORDER BY id DESC LIMIT $limit"
}

var (
	postFields = []string{
		"id", "content", "createdAt", authorProjection,
		"count(<-replied) AS numReplies",
		reactionsSubquery,
	}

	replyFields = []string{
		"id", "content", "createdAt", authorProjection,
		"->replied->post AS replyTo",
		reactionsSubquery,
	}
)

const postDetailQuery = `SELECT id, content, createdAt, ` + authorProjection + `,
	count(<-replied) AS numReplies,
	(SELECT id, kind, in.{username} AS reactedBy, reactedAt FROM <-reacted ORDER BY reactedAt DESC) AS reactions,
	(SELECT id, content, createdAt, ` + authorProjection + `, ->replied->post AS replyTo, ` + reactionsSubquery + `
		FROM <-replied<-reply ORDER BY createdAt ASC) AS replies
FROM type::thing("post", $postId)`

const userDetailQuery = `SELECT username, displayName, createdAt, avatarImageId, biography
FROM user WHERE username = $username LIMIT 1`

const createPostQuery = `CREATE type::thing("post", $id) SET content = $content, createdBy = $auth.id, createdAt = time::now() RETURN NONE;
SELECT id, content, createdAt, ` + authorProjection + `, 0 AS numReplies, [] AS reactions FROM type::thing("post", $id);`

const createReplyQuery = `CREATE type::thing("reply", $id) SET content = $content, createdBy = $auth.id, createdAt = time::now() RETURN NONE;
RELATE (type::thing("reply", $id))->replied->(type::thing("post", $postId)) RETURN NONE;
SELECT id, content, createdAt, ` + authorProjection + `, ->replied->post AS replyTo, [] AS reactions FROM type::thing("reply", $id);`

const itemReactionsQuery = `SELECT id, ` + reactionsSubquery + ` FROM type::thing($table, $id)`
