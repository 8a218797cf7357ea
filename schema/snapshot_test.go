package schema

import "testing"

func TestSnapshot_RoundTrip(t *testing.T) {
	snap := mustParse(t, blogSchema)
	data, err := EncodeSnapshot(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(decoded.Entities) != len(snap.Entities) {
		t.Fatalf("entity count %d != %d", len(decoded.Entities), len(snap.Entities))
	}
	user, ok := decoded.Entity("User")
	if !ok {
		t.Fatal("User missing after decode")
	}
	email, ok := user.Field("email")
	if !ok || !email.Unique || email.Type != TypeString {
		t.Errorf("email field = %+v", email)
	}
	created, _ := user.Field("createdAt")
	if created.Default != DefaultNow {
		t.Errorf("createdAt default = %v", created.Default)
	}

	post, _ := decoded.Entity("Post")
	published, _ := post.Field("published")
	if published.Default != DefaultStatic || published.DefaultValue != false {
		t.Errorf("published default = %v %v", published.Default, published.DefaultValue)
	}
	if len(post.Relations) != 1 {
		t.Fatalf("relations = %+v", post.Relations)
	}
	if !post.Relations[0].OnDeleteCascade {
		t.Error("cascade flag lost in round trip")
	}
}

func TestSnapshot_ChecksumStable(t *testing.T) {
	a := mustParse(t, blogSchema)
	b := mustParse(t, blogSchema)
	sa, err := a.Checksum()
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	sb, _ := b.Checksum()
	if sa != sb {
		t.Errorf("checksums differ for identical schemas: %s vs %s", sa, sb)
	}
	if len(sa) != 64 {
		t.Errorf("checksum length = %d", len(sa))
	}
}

func TestSnapshot_ChecksumIgnoresDeclarationOrder(t *testing.T) {
	a := mustParse(t, `entity A {
    id int @id
    x  string?
    y  bool?
}`)
	b := mustParse(t, `entity A {
    id int @id
    y  bool?
    x  string?
}`)
	sa, _ := a.Checksum()
	sb, _ := b.Checksum()
	if sa != sb {
		t.Error("checksum should not depend on field declaration order")
	}
}

func TestSnapshot_ChecksumChangesWithSchema(t *testing.T) {
	a := mustParse(t, blogSchema)
	b := mustParse(t, blogSchema+`
entity Tag {
    id int @id
}`)
	sa, _ := a.Checksum()
	sb, _ := b.Checksum()
	if sa == sb {
		t.Error("checksum should change when the schema changes")
	}
}

func TestDecodeSnapshot_Garbage(t *testing.T) {
	if _, err := DecodeSnapshot([]byte("not msgpack")); err == nil {
		t.Fatal("expected a decode error")
	}
}
